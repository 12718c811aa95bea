/*
Package hostpatch prepares a dashboard page for publishing behind a StatiCrypt password gate.

# How it works:

The host document is the dashboard page that loads its data with a JavaScript function.
PatchHost inserts a script holding the Salt and a client side decrypt routine, and replaces the data loading function with one that fetches the encrypted artifact and decrypts it with the key the gate keeps in local storage.
The patched page is passed to a Generator, normally StatiCrypt, which wraps it in the password gate.
PostProcess then adds branding to the gate and makes the gate always store the key, since the page itself needs it to decrypt its data.

# Important note:

Every patch point is a plain text or regex match against markup owned by someone else.
They're grouped into a versioned PatchSet so format drift is reported as ErrPatchPointNotFound with the patch set version, instead of producing a broken page.
Revalidate the PatchSet whenever the host page or the StatiCrypt version changes.
*/
package hostpatch
